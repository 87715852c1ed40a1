package paywall

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/internal/storage"
	"github.com/relay402/server/pkg/x402"
)

// ConfigMarker is the placeholder a custom template must contain; it is
// replaced with the base64 page config.
const ConfigMarker = "{{payment-config}}"

// theme holds the color palette for a paywall theme preset.
type theme struct {
	Background string
	Surface    string
	Text       string
	Muted      string
	Accent     string
}

var themes = map[string]theme{
	"light": {
		Background: "#f5f5f7",
		Surface:    "#ffffff",
		Text:       "#1d1d1f",
		Muted:      "#6e6e73",
		Accent:     "#2563eb",
	},
	"dark": {
		Background: "#18181b",
		Surface:    "#27272a",
		Text:       "#fafafa",
		Muted:      "#a1a1aa",
		Accent:     "#3b82f6",
	},
	"midnight": {
		Background: "#0b1120",
		Surface:    "#111a2e",
		Text:       "#e2e8f0",
		Muted:      "#64748b",
		Accent:     "#38bdf8",
	},
}

// Renderer renders paywall pages.
type Renderer struct {
	defaultTheme string
	wcProjectID  string
	tmpl         *template.Template
}

// NewRenderer creates a paywall renderer.
func NewRenderer(defaultTheme, walletConnectProjectID string) *Renderer {
	if _, ok := themes[defaultTheme]; !ok {
		defaultTheme = "light"
	}
	return &Renderer{
		defaultTheme: defaultTheme,
		wcProjectID:  walletConnectProjectID,
		tmpl:         template.Must(template.New("paywall").Parse(defaultTemplate)),
	}
}

// pageData feeds the default template.
type pageData struct {
	Title         string
	Description   string
	LogoURL       string
	Price         string
	NetworkName   string
	Theme         theme
	EncodedConfig string
}

// Render writes the paywall page for an endpoint. When the endpoint carries a
// custom template, its config marker is substituted; otherwise the built-in
// template is used with the endpoint's theme.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, ep storage.Endpoint, required x402.PaymentRequired) {
	cfg := BuildPageConfig(ep, required, r.wcProjectID)
	encoded := cfg.Encode()

	var body []byte
	if ep.CustomTemplate != "" {
		body = []byte(strings.ReplaceAll(ep.CustomTemplate, ConfigMarker, encoded))
	} else {
		rendered, err := r.renderDefault(ep, encoded)
		if err != nil {
			log := logger.FromContext(req.Context())
			log.Error().Err(err).
				Str("endpoint_id", ep.ID).
				Msg("paywall.render_failed")
			http.Error(w, "payment page unavailable", http.StatusInternalServerError)
			return
		}
		body = rendered
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write(body)
}

func (r *Renderer) renderDefault(ep storage.Endpoint, encodedConfig string) ([]byte, error) {
	themeName := ep.Paywall.Theme
	if _, ok := themes[themeName]; !ok {
		themeName = r.defaultTheme
	}
	palette := themes[themeName]
	if ep.Paywall.AccentColor != "" {
		palette.Accent = ep.Paywall.AccentColor
	}

	networkName := "Base"
	if ep.Testnet {
		networkName = "Base Sepolia"
	}

	data := pageData{
		Title:         pageTitle(ep),
		Description:   pageDescription(ep),
		LogoURL:       ep.Paywall.LogoURL,
		Price:         displayPrice(ep.PriceUSD),
		NetworkName:   networkName,
		Theme:         palette,
		EncodedConfig: encodedConfig,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute paywall template: %w", err)
	}
	return buf.Bytes(), nil
}

const defaultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="x-paywall-config" content="{{.EncodedConfig}}">
<title>{{.Title}} &mdash; Payment Required</title>
<style>
  :root {
    --bg: {{.Theme.Background}};
    --surface: {{.Theme.Surface}};
    --text: {{.Theme.Text}};
    --muted: {{.Theme.Muted}};
    --accent: {{.Theme.Accent}};
  }
  * { box-sizing: border-box; margin: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: var(--bg);
    color: var(--text);
    min-height: 100vh;
    display: flex;
    align-items: center;
    justify-content: center;
    padding: 1rem;
  }
  .card {
    background: var(--surface);
    border-radius: 16px;
    padding: 2.5rem;
    max-width: 420px;
    width: 100%;
    box-shadow: 0 4px 24px rgba(0,0,0,0.08);
    text-align: center;
  }
  .card img.logo { max-height: 48px; margin-bottom: 1.5rem; }
  h1 { font-size: 1.4rem; margin-bottom: 0.5rem; }
  p.description { color: var(--muted); margin-bottom: 1.5rem; font-size: 0.95rem; }
  .price { font-size: 2.2rem; font-weight: 700; margin-bottom: 0.25rem; }
  .network { color: var(--muted); font-size: 0.85rem; margin-bottom: 1.5rem; }
  button.pay {
    background: var(--accent);
    color: #fff;
    border: none;
    border-radius: 10px;
    padding: 0.9rem 1.5rem;
    font-size: 1rem;
    font-weight: 600;
    width: 100%;
    cursor: pointer;
  }
  button.pay:disabled { opacity: 0.6; cursor: wait; }
  .hint { margin-top: 1rem; color: var(--muted); font-size: 0.8rem; }
</style>
</head>
<body>
<div class="card">
  {{if .LogoURL}}<img class="logo" src="{{.LogoURL}}" alt="">{{end}}
  <h1>{{.Title}}</h1>
  {{if .Description}}<p class="description">{{.Description}}</p>{{end}}
  <div class="price">{{.Price}}</div>
  <div class="network">USDC on {{.NetworkName}}</div>
  <button class="pay" id="pay-button">Pay with wallet</button>
  <p class="hint">Pays via the x402 protocol. After payment the response loads automatically.</p>
</div>
<script>
  (function () {
    var meta = document.querySelector('meta[name="x-paywall-config"]');
    var config = JSON.parse(atob(meta.content));
    var button = document.getElementById('pay-button');
    button.addEventListener('click', function () {
      button.disabled = true;
      button.textContent = 'Connecting wallet…';
      window.dispatchEvent(new CustomEvent('x402:pay', { detail: config }));
    });
  })();
</script>
</body>
</html>
`
