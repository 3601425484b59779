package engine

type ApplicationConfig struct {
	// The application name, used in logs.
	Name string
}
