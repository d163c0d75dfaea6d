package config

type Config struct {
	ClientCodePrefix string
}
