package proxy

import (
	"path/filepath"
	"strconv"
	"strings"
)

// staticCacheMaxAge is the Cache-Control max-age applied to the two static
// asset alias locations, per spec §4.8 item 1's "1-year cache".
const staticCacheMaxAge = "31536000"

// ServerBlockConfig holds the values the nginx server block template needs.
type ServerBlockConfig struct {
	// Hostname is the public URL's host (e.g. "my-app.platform.example.com").
	Hostname string

	// InternalPort is the port the App Supervisor bound the app to on
	// localhost.
	InternalPort int

	// BuildOutputPath is the extracted artifact directory on the host
	// (C6's HostOutputDirectory). Static assets under
	// <BuildOutputPath>/.next/static and <BuildOutputPath>/public are
	// served directly by nginx rather than proxied to the Node process,
	// per spec §4.8 item 1.
	BuildOutputPath string

	// UseHTTPS selects between a single HTTP-only block and an
	// HTTP-redirect-to-HTTPS pair backed by CertDir's cert/key.
	UseHTTPS bool

	// CertPath and KeyPath are only used when UseHTTPS is true.
	CertPath string
	KeyPath  string
}

// RenderServerBlock builds the nginx server block text for one deployment.
// Plain fmt.Sprintf/strings.Builder composition is used instead of
// text/template: the shape here is fixed and small enough that a template
// engine would add indirection without buying readability.
func RenderServerBlock(config ServerBlockConfig) string {
	var b strings.Builder

	if config.UseHTTPS {
		b.WriteString("server {\n")
		b.WriteString("    listen 80;\n")
		b.WriteString("    server_name " + config.Hostname + ";\n")
		b.WriteString("    return 301 https://$host$request_uri;\n")
		b.WriteString("}\n\n")

		b.WriteString("server {\n")
		b.WriteString("    listen 443 ssl http2;\n")
		b.WriteString("    server_name " + config.Hostname + ";\n")
		b.WriteString("    ssl_certificate " + config.CertPath + ";\n")
		b.WriteString("    ssl_certificate_key " + config.KeyPath + ";\n")
		writeSSLHardening(&b)
		b.WriteString("\n")
		writeStaticLocations(&b, config.BuildOutputPath)
		writeProxyLocation(&b, config.InternalPort)
		b.WriteString("}\n")
		return b.String()
	}

	b.WriteString("server {\n")
	b.WriteString("    listen 80;\n")
	b.WriteString("    server_name " + config.Hostname + ";\n\n")
	writeStaticLocations(&b, config.BuildOutputPath)
	writeProxyLocation(&b, config.InternalPort)
	b.WriteString("}\n")
	return b.String()
}

// writeSSLHardening emits the modern cipher suite and session caching
// directives spec §4.8 item 2 requires alongside the TLS listener.
func writeSSLHardening(b *strings.Builder) {
	b.WriteString("    ssl_protocols TLSv1.2 TLSv1.3;\n")
	b.WriteString("    ssl_ciphers ECDHE-ECDSA-AES128-GCM-SHA256:ECDHE-RSA-AES128-GCM-SHA256:ECDHE-ECDSA-AES256-GCM-SHA384:ECDHE-RSA-AES256-GCM-SHA384:ECDHE-ECDSA-CHACHA20-POLY1305:ECDHE-RSA-CHACHA20-POLY1305;\n")
	b.WriteString("    ssl_prefer_server_ciphers off;\n")
	b.WriteString("    ssl_session_cache shared:SSL:10m;\n")
	b.WriteString("    ssl_session_timeout 10m;\n")
}

// writeStaticLocations emits the two alias locations spec §4.8 item 1
// requires so nginx serves Next.js's compiled static assets directly
// instead of round-tripping them through the supervised Node process.
// Skipped entirely when buildOutputPath is empty.
func writeStaticLocations(b *strings.Builder, buildOutputPath string) {
	if buildOutputPath == "" {
		return
	}

	b.WriteString("    location /_next/static/ {\n")
	b.WriteString("        alias " + filepath.Join(buildOutputPath, ".next", "static") + "/;\n")
	b.WriteString("        add_header Cache-Control \"public, max-age=" + staticCacheMaxAge + ", immutable\";\n")
	b.WriteString("    }\n\n")

	b.WriteString("    location /static/ {\n")
	b.WriteString("        alias " + filepath.Join(buildOutputPath, "public") + "/;\n")
	b.WriteString("        add_header Cache-Control \"public, max-age=" + staticCacheMaxAge + ", immutable\";\n")
	b.WriteString("    }\n\n")
}

func writeProxyLocation(b *strings.Builder, internalPort int) {
	b.WriteString("    location / {\n")
	b.WriteString("        proxy_pass http://127.0.0.1:" + strconv.Itoa(internalPort) + ";\n")
	b.WriteString("        proxy_http_version 1.1;\n")
	b.WriteString("        proxy_set_header Upgrade $http_upgrade;\n")
	b.WriteString("        proxy_set_header Connection \"upgrade\";\n")
	b.WriteString("        proxy_set_header Host $host;\n")
	b.WriteString("        proxy_set_header X-Real-IP $remote_addr;\n")
	b.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	b.WriteString("        proxy_set_header X-Forwarded-Proto $scheme;\n")
	b.WriteString("    }\n")
}
