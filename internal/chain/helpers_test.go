package chain

import "github.com/blues/cfs-escrow/internal/config"

func configChain() config.ChainConfig {
	return config.ChainConfig{ChainType: "ethereum", ChainId: 1337}
}

func configClock(source string) config.ClockConfig {
	return config.ClockConfig{Source: source}
}
