package fingerprint

import "github.com/scraperfleet/browserfarm/pkg/models"

// Identity building blocks. Combinations are kept internally consistent:
// a platform index selects matching user agents and GPU strings so a
// generated identity never claims a Mac GPU on a Windows UA.

type platformProfile struct {
	platform  string
	userAgents []string
	gpuVendors []string
	gpuRenderers []string
}

var platformProfiles = []platformProfile{
	{
		platform: "Win32",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		},
		gpuVendors: []string{"Google Inc. (NVIDIA)", "Google Inc. (Intel)", "Google Inc. (AMD)"},
		gpuRenderers: []string{
			"ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
			"ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)",
			"ANGLE (AMD, AMD Radeon RX 6600 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		},
	},
	{
		platform: "MacIntel",
		userAgents: []string{
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		},
		gpuVendors: []string{"Google Inc. (Apple)"},
		gpuRenderers: []string{
			"ANGLE (Apple, Apple M1, OpenGL 4.1)",
			"ANGLE (Apple, Apple M2 Pro, OpenGL 4.1)",
		},
	},
	{
		platform: "Linux x86_64",
		userAgents: []string{
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		},
		gpuVendors: []string{"Google Inc. (Intel)", "Google Inc. (NVIDIA Corporation)"},
		gpuRenderers: []string{
			"ANGLE (Intel, Mesa Intel(R) UHD Graphics 630 (CFL GT2), OpenGL 4.6)",
			"ANGLE (NVIDIA Corporation, NVIDIA GeForce GTX 1660/PCIe/SSE2, OpenGL 4.5)",
		},
	},
}

var viewports = []models.Viewport{
	{Width: 1920, Height: 1080},
	{Width: 1366, Height: 768},
	{Width: 1536, Height: 864},
	{Width: 1440, Height: 900},
	{Width: 1680, Height: 1050},
	{Width: 2560, Height: 1440},
}

var timezones = []string{
	"America/New_York",
	"America/Chicago",
	"America/Los_Angeles",
	"Europe/London",
	"Europe/Berlin",
	"Europe/Paris",
	"Asia/Tokyo",
	"Australia/Sydney",
}

var languages = []string{
	"en-US",
	"en-GB",
	"de-DE",
	"fr-FR",
	"es-ES",
	"ja-JP",
}
