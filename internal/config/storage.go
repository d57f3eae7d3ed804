package config

type StorageConfig struct {
	Path string `yaml:"path"`
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Path: getEnv("STORAGE_PATH", ".goride/state.json"),
	}
}
