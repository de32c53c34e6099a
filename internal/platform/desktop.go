package platform

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thinktwice-app/thinktwice/internal/monitor"
)

// applicationDirs returns the freedesktop application directories to scan,
// user entries first so they shadow system ones.
func applicationDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "applications"))
	}
	dirs = append(dirs,
		"/usr/local/share/applications",
		"/usr/share/applications",
	)
	return dirs
}

// InstalledApps lists installed applications by parsing freedesktop
// .desktop entries. The entry's file basename (without the .desktop suffix)
// is the package name, matching what the focus helper reports.
func (p *FocusFilePlatform) InstalledApps() ([]monitor.InstalledApp, error) {
	return scanDesktopEntries(applicationDirs())
}

func scanDesktopEntries(dirs []string) ([]monitor.InstalledApp, error) {
	seen := make(map[string]bool)
	var apps []monitor.InstalledApp

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // directory may not exist on this system
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".desktop") {
				continue
			}
			pkg := strings.TrimSuffix(name, ".desktop")
			if seen[pkg] {
				continue
			}

			app, ok := parseDesktopEntry(filepath.Join(dir, name), pkg)
			if !ok {
				continue
			}
			seen[pkg] = true
			apps = append(apps, app)
		}
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].PackageName < apps[j].PackageName })
	return apps, nil
}

// parseDesktopEntry extracts Name and Icon from the [Desktop Entry] section.
// Malformed files are skipped rather than failing the whole scan.
func parseDesktopEntry(path, pkg string) (monitor.InstalledApp, bool) {
	f, err := os.Open(path)
	if err != nil {
		return monitor.InstalledApp{}, false
	}
	defer f.Close()

	app := monitor.InstalledApp{PackageName: pkg}
	inEntry := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			// Only the first [Desktop Entry] section matters.
			if inEntry {
				break
			}
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		switch key {
		case "Name":
			if app.Name == "" {
				app.Name = value
			}
		case "Icon":
			if app.IconPath == "" {
				app.IconPath = value
			}
		case "NoDisplay":
			if value == "true" {
				return monitor.InstalledApp{}, false
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return monitor.InstalledApp{}, false
	}

	if app.Name == "" {
		app.Name = pkg
	}
	return app, true
}
