package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tphakala/parkpulse/internal/errors"
)

const (
	appDirName     = "parkpulse"
	configFileName = "config.yaml"
)

// configDirs lists the directories searched for config.yaml, most specific
// first.
func configDirs() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "user_home_dir").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{".", filepath.Join(home, "AppData", "Roaming", appDirName)}, nil
	}
	return []string{".", filepath.Join(home, ".config", appDirName), filepath.Join("/etc", appDirName)}, nil
}

// GetDefaultConfigPaths returns the config search path. When one of the
// directories already holds a config.yaml only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	dirs, err := configDirs()
	if err != nil {
		return nil, err
	}
	if path, ok := firstConfigFile(dirs); ok {
		return []string{filepath.Dir(path)}, nil
	}
	return dirs, nil
}

// FindConfigFile returns the path of the first config.yaml on the search path.
func FindConfigFile() (string, error) {
	dirs, err := configDirs()
	if err != nil {
		return "", err
	}
	if path, ok := firstConfigFile(dirs); ok {
		return path, nil
	}
	return "", errors.Newf("%s not found in %s", configFileName, strings.Join(dirs, ", ")).
		Category(errors.CategoryNotFound).
		Context("operation", "find_config_file").
		Build()
}

func firstConfigFile(dirs []string) (string, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, configFileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ServiceLogPath returns the log file of a service, logs/<service>.log unless
// main.log.path says otherwise.
func ServiceLogPath(settings *Settings, service string) string {
	dir := "logs"
	if settings != nil && strings.TrimSpace(settings.Main.Log.Path) != "" {
		dir = settings.Main.Log.Path
	}
	return filepath.Join(dir, service+".log")
}
