// internal/browser/chrome.go
package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/rs/zerolog/log"
)

// chromeEnvVars are checked in order before any filesystem probing
var chromeEnvVars = []string{"SHOPSCRAPE_CHROME_PATH", "CHROME_PATH"}

var pathBinaries = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// FindChrome locates a Chrome or Chromium executable. An empty string means
// chromedp will fall back to its own lookup.
func FindChrome() string {
	path, err := LookupChrome()
	if err != nil {
		log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, falling back to chromedp default")
		return ""
	}
	return path
}

// LookupChrome is FindChrome with an explicit engine.ErrBrowserNotFound
func LookupChrome() (string, error) {
	for _, name := range chromeEnvVars {
		path := os.Getenv(name)
		if path == "" {
			continue
		}
		if isExecutable(path) {
			log.Debug().Str("path", path).Str("env", name).Msg("Chrome found via environment")
			return path, nil
		}
		log.Warn().Str("path", path).Str("env", name).Msg("Chrome path set but not executable")
	}

	for _, path := range chromeCandidates() {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found at standard location")
			return path, nil
		}
	}

	for _, name := range pathBinaries {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path, nil
		}
	}

	return "", engine.ErrBrowserNotFound
}

func chromeCandidates() []string {
	home := os.Getenv("HOME")

	switch runtime.GOOS {
	case "darwin":
		c := []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
		if home != "" {
			c = append(c, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome"))
		}
		return c

	case "windows":
		var c []string
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base == "" {
				continue
			}
			c = append(c,
				filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(base, "Chromium", "Application", "chrome.exe"),
			)
		}
		return c

	default:
		c := []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/headless-shell/headless-shell",
		}
		if home != "" {
			c = append(c, filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"))
		}
		return c
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// ChromeVersion runs the executable with --version. It returns "unknown" when
// the version cannot be read.
func ChromeVersion(chromePath string) string {
	if chromePath == "" || runtime.GOOS == "windows" {
		return "unknown"
	}
	out, err := exec.Command(chromePath, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
