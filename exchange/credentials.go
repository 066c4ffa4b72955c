package exchange

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Credentials are the Upbit API keys. They are read from the
// environment, optionally seeded from a .env file, and never from the
// run configuration.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// LoadCredentials reads UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY. A .env
// file in the working directory is loaded first if present; real
// environment variables win over it.
func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load()

	c := Credentials{
		AccessKey: os.Getenv("UPBIT_ACCESS_KEY"),
		SecretKey: os.Getenv("UPBIT_SECRET_KEY"),
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return Credentials{}, fmt.Errorf("exchange: UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY must be set")
	}
	return c, nil
}
