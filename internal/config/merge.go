package config

// Merge combines two configs. The overlay config takes precedence over the
// base config for the same gateway name, and its agent block wins when set.
func Merge(base, overlay *Config) *Config {
	merged := NewConfig()

	// Start with base config
	if base != nil {
		for name, cfg := range base.Gateways {
			merged.Gateways[name] = cfg
		}
		merged.Agent = base.Agent
	}

	// Override with overlay config
	if overlay != nil {
		for name, cfg := range overlay.Gateways {
			merged.Gateways[name] = cfg
		}
		if overlay.Agent != nil {
			merged.Agent = overlay.Agent
		}
	}

	return merged
}

// Load loads and merges all config layers for a project directory.
// Precedence from weakest to strongest: user config, the project
// credentials bundle, project config, local config.
func Load(projectDir string) (*Config, error) {
	user, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}

	bundle, err := LoadBundleConfig(projectDir)
	if err != nil {
		return nil, err
	}

	project, err := LoadProjectConfig(projectDir)
	if err != nil {
		return nil, err
	}

	local, err := LoadLocalConfig(projectDir)
	if err != nil {
		return nil, err
	}

	return Merge(Merge(Merge(user, bundle), project), local), nil
}
