package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	MailConfig struct {
		Backend          string // console | sendgrid
		SendgridAPIKey   string
		DefaultFromEmail string
		DefaultFromName  string
	}

	AMQPConfig struct {
		URL      string // empty disables event publishing
		Exchange string
	}

	LedgerConfig struct {
		MaxFeeAmount     float64
		MaxPayrollAmount float64
		MaxExpenseAmount float64
	}

	ResultsConfig struct {
		EnforceWeightCap  bool
		TotalPossible     float64
		ErrorPreviewLimit int
	}

	Config struct {
		Env          string // DEV (local; default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		AppName      string
		WorkDir      string
		Build        string
		Host         string
		RollbarToken string

		Database DatabaseConfig
		Mail     MailConfig
		AMQP     AMQPConfig
		Ledger   LedgerConfig
		Results  ResultsConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.Mail.DefaultFromName, Address: c.Mail.DefaultFromEmail}
}

func (c *Config) IsDev() bool  { return c.Env == "DEV" }
func (c *Config) IsTest() bool { return c.Env == "TEST" }

func init() {
	conf, err := NewConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	Conf = conf
}

// NewConfig reads the configuration from the environment and the optional `config/.env.<env>` file.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Glad Tidings School Portal")
	v.SetDefault("build", "dev")
	v.SetDefault("host", "localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "portal")
	v.SetDefault("db_user", "portal")
	v.SetDefault("db_password", "portal")
	v.SetDefault("db_admin_user", "")
	v.SetDefault("db_admin_password", "")
	v.SetDefault("db_disable_tls", true)
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("mail_backend", "console")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("default_from_name", "School Portal")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "portal.events")
	v.SetDefault("max_fee_amount", 10000000.0)
	v.SetDefault("max_payroll_amount", 5000000.0)
	v.SetDefault("max_expense_amount", 10000000.0)
	v.SetDefault("enforce_weight_cap", true)
	v.SetDefault("total_possible", 100.0)
	v.SetDefault("error_preview_limit", 10)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "DEV", "TEST", "QA", "PROD": // pass
	default:
		return nil, fmt.Errorf("unknown ENV %q", env)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     env == "TEST",
		AppName:      v.GetString("appName"),
		WorkDir:      workDir,
		Build:        v.GetString("build"),
		Host:         v.GetString("host"),
		RollbarToken: v.GetString("rollbarToken"),
		Database: DatabaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
			MaxOpenConns:  v.GetInt("db_max_open_conns"),
		},
		Mail: MailConfig{
			Backend:          strings.ToLower(v.GetString("mail_backend")),
			SendgridAPIKey:   v.GetString("sendgrid_api_key"),
			DefaultFromEmail: v.GetString("default_from_email"),
			DefaultFromName:  v.GetString("default_from_name"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("amqp_url"),
			Exchange: v.GetString("amqp_exchange"),
		},
		Ledger: LedgerConfig{
			MaxFeeAmount:     v.GetFloat64("max_fee_amount"),
			MaxPayrollAmount: v.GetFloat64("max_payroll_amount"),
			MaxExpenseAmount: v.GetFloat64("max_expense_amount"),
		},
		Results: ResultsConfig{
			EnforceWeightCap:  v.GetBool("enforce_weight_cap"),
			TotalPossible:     v.GetFloat64("total_possible"),
			ErrorPreviewLimit: v.GetInt("error_preview_limit"),
		},
	}, nil
}
