package board

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Hawkeye Monitoring Board</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
    <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
    <style>
        body { margin: 0; font-family: sans-serif; background: #1e1e1e; color: #ddd; }
        .app { display: grid; grid-template-columns: 1fr 360px; height: 100vh; }
        #map { height: 100%; }
        .side { overflow-y: auto; padding: 12px; background: #252525; }
        h2 { font-size: 16px; margin: 12px 0 8px; }
        .alert-item { background: #3a1d1f; border-left: 4px solid #dc3545; padding: 6px 10px; margin-bottom: 8px; }
        .alert-item p { margin: 0 0 4px; }
        .alert-item span { font-size: 12px; color: #aaa; }
        .no-alerts { color: #888; }
        #events-log { list-style: none; padding: 0; margin: 0; font-size: 13px; }
        #events-log li { padding: 4px 0; border-bottom: 1px solid #333; }
        #events-log li span { color: #888; }
        .event-threat { color: #ff6b6b; }
        #link-status { font-size: 12px; color: #888; }
        .custom-map-icon { background: none; border: none; }
    </style>
</head>
<body>
    <div class="app">
        <div id="map"></div>
        <div class="side">
            <span id="link-status">● Connecting...</span>
            <h2>High-Priority Alerts</h2>
            <div id="alerts-container"></div>
            <h2>Recent Events</h2>
            <ul id="events-log"></ul>
            <p><a href="/test" style="color:#f0ad4e;">Test the detection model</a></p>
        </div>
    </div>
<script>
(() => {
    const pin = (color) => L.divIcon({
        className: 'custom-map-icon',
        html: '<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" fill="' + color + '" width="24px" height="24px"><path d="M12 2C8.13 2 5 5.13 5 9c0 5.25 7 13 7 13s7-7.75 7-13c0-3.87-3.13-7-7-7zm0 9.5c-1.38 0-2.5-1.12-2.5-2.5s1.12-2.5 2.5-2.5 2.5 1.12 2.5 2.5-1.12 2.5-2.5 2.5z"/><circle cx="12" cy="9.5" r="2.5" fill="white"/></svg>',
        iconSize: [24, 24],
        iconAnchor: [12, 24],
        popupAnchor: [0, -24]
    });
    const icons = { normal: pin('#28a745'), alert: pin('#dc3545') };

    const map = L.map('map').setView([12.9716, 77.5946], 11);
    L.tileLayer('https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png', {
        attribution: '&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>'
    }).addTo(map);

    const alertsEl = document.getElementById('alerts-container');
    const eventsEl = document.getElementById('events-log');
    const statusEl = document.getElementById('link-status');

    // handle -> Leaflet layer
    let layers = {};
    let seq = 0;

    const addMarker = (m) => {
        layers[m.handle] = L.marker([m.lat, m.lon], { icon: icons[m.style] || icons.normal })
            .addTo(map).bindPopup(m.popup);
    };
    const addZone = (z) => {
        layers[z.handle] = L.circle([z.lat, z.lon], {
            color: '#f0ad4e', weight: 2, fillOpacity: 0.2, radius: z.radius
        }).addTo(map).bindPopup(z.popup);
    };

    const loadScene = (scene) => {
        Object.values(layers).forEach(l => map.removeLayer(l));
        layers = {};
        (scene.markers || []).forEach(addMarker);
        (scene.zones || []).forEach(addZone);
        alertsEl.innerHTML = scene.alerts_html;
        eventsEl.innerHTML = scene.events_html;
        seq = scene.seq;
    };

    const applyOp = (op) => {
        if (op.seq <= seq) return;
        seq = op.seq;
        switch (op.kind) {
        case 'marker.add':
            addMarker(op);
            break;
        case 'marker.update': {
            const m = layers[op.handle];
            if (m) m.setIcon(icons[op.style] || icons.normal).bindPopup(op.popup || '');
            break;
        }
        case 'zone.add':
            addZone(op);
            break;
        case 'zone.remove':
            if (layers[op.handle]) {
                map.removeLayer(layers[op.handle]);
                delete layers[op.handle];
            }
            break;
        case 'feed.alerts':
            alertsEl.innerHTML = op.html || '';
            break;
        case 'feed.events':
            eventsEl.innerHTML = op.html || '';
            break;
        }
    };

    const connect = () => {
        const es = new EventSource('/api/ops/stream');
        es.addEventListener('scene', (e) => {
            loadScene(JSON.parse(e.data));
            statusEl.textContent = '● Live';
            statusEl.style.color = '#28a745';
        });
        es.addEventListener('op', (e) => applyOp(JSON.parse(e.data)));
        es.onerror = () => {
            statusEl.textContent = '● Reconnecting...';
            statusEl.style.color = '#dc3545';
        };
    };
    connect();
})();
</script>
</body>
</html>
`

const testHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Hawkeye Model Test</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: sans-serif; background: #1e1e1e; color: #ddd; padding: 20px; }
        .panes { display: flex; gap: 20px; flex-wrap: wrap; }
        .pane { flex: 1; min-width: 300px; }
        img { max-width: 100%; display: none; border: 1px solid #444; }
        .hidden { display: none; }
        .loader { border: 4px solid #444; border-top: 4px solid #f0ad4e; border-radius: 50%; width: 32px; height: 32px; animation: spin 1s linear infinite; }
        @keyframes spin { to { transform: rotate(360deg); } }
        button { padding: 8px 16px; }
    </style>
</head>
<body>
    <h1>Test the Detection Model</h1>
    <p><a href="/" style="color:#f0ad4e;">Back to the board</a></p>
    <input type="file" id="image-upload" accept="image/*">
    <button id="detect-btn" disabled>Detect</button>
    <div class="loader hidden"></div>
    <div class="panes">
        <div class="pane"><h2>Uploaded</h2><img id="image-preview" alt="Uploaded image"></div>
        <div class="pane"><h2>Result</h2><img id="result-image" alt="Annotated result"></div>
    </div>
<script>
(() => {
    const upload = document.getElementById('image-upload');
    const preview = document.getElementById('image-preview');
    const result = document.getElementById('result-image');
    const btn = document.getElementById('detect-btn');
    const loader = document.querySelector('.loader');
    let file = null;

    upload.addEventListener('change', (e) => {
        file = e.target.files[0] || null;
        if (!file) return;
        const reader = new FileReader();
        reader.onload = (ev) => {
            preview.src = ev.target.result;
            preview.style.display = 'block';
            result.removeAttribute('src');
            result.style.display = 'none';
            btn.disabled = false;
        };
        reader.readAsDataURL(file);
    });

    btn.addEventListener('click', async () => {
        if (!file) {
            alert('Please upload an image first!');
            return;
        }
        loader.classList.remove('hidden');
        btn.disabled = true;
        result.removeAttribute('src');

        const form = new FormData();
        form.append('file', file);
        try {
            const resp = await fetch('/predict', { method: 'POST', body: form });
            if (resp.ok) {
                result.src = URL.createObjectURL(await resp.blob());
                result.style.display = 'block';
            } else {
                alert('Error: ' + await resp.text());
            }
        } catch (err) {
            console.error('predict failed', err);
            alert('An error occurred while processing the image.');
        } finally {
            loader.classList.add('hidden');
            btn.disabled = false;
        }
    });
})();
</script>
</body>
</html>
`
