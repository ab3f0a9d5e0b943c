package internal

// Option configures the application before Run brings the endpoints up.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the loaded service configuration. Run fails without it.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
