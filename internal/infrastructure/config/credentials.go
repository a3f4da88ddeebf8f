package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

const envPrefix = "FUNDARB_"

// ErrMissingCredentials 环境变量中没有该交易所的凭证
var ErrMissingCredentials = errors.New("missing credentials")

// EnvCredentials 从环境变量读取凭证，.env 文件存在时先加载（不覆盖已有变量）
type EnvCredentials struct {
	lookup func(string) (string, bool)
}

// NewEnvCredentials 加载 envFile 并返回凭证提供者
func NewEnvCredentials(envFile string) (*EnvCredentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return &EnvCredentials{lookup: os.LookupEnv}, nil
}

// Credentials FUNDARB_<VENUE>_API_KEY / API_SECRET / PASSPHRASE，
// Hyperliquid 为 FUNDARB_HYPERLIQUID_PRIVATE_KEY / ACCOUNT_ADDRESS
func (e *EnvCredentials) Credentials(v model.Venue) (port.Credentials, error) {
	prefix := envPrefix + strings.ToUpper(v.String()) + "_"
	get := func(name string) string {
		val, _ := e.lookup(prefix + name)
		return strings.TrimSpace(val)
	}

	if v == model.VenueHyperliquid {
		c := port.Credentials{PrivateKey: get("PRIVATE_KEY"), Account: get("ACCOUNT_ADDRESS")}
		if c.PrivateKey == "" {
			return c, fmt.Errorf("%w: %sPRIVATE_KEY", ErrMissingCredentials, prefix)
		}
		return c, nil
	}

	c := port.Credentials{
		APIKey:     get("API_KEY"),
		APISecret:  get("API_SECRET"),
		Passphrase: get("PASSPHRASE"),
	}
	if c.APIKey == "" || c.APISecret == "" {
		return c, fmt.Errorf("%w: %sAPI_KEY/%sAPI_SECRET", ErrMissingCredentials, prefix, prefix)
	}
	if v == model.VenueOKX && c.Passphrase == "" {
		return c, fmt.Errorf("%w: %sPASSPHRASE", ErrMissingCredentials, prefix)
	}
	return c, nil
}
