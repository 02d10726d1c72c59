package ui

// Config holds the window settings handed over by the command line.
type Config struct {
	Title string
	Scale int
}

// Defaults fills unset fields with sensible values.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
