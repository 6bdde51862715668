package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`

	// File adds a rotated JSON log file next to stdout.
	File          string `split_words:"true"`
	MaxSizeMB     int    `envconfig:"MAX_SIZE_MB" default:"10"`
	MaxBackups    int    `split_words:"true" default:"5"`
	MaxAgeDays    int    `split_words:"true" default:"7"`
	CompressFiles bool   `split_words:"true" default:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

func Init(opts ...Config) {
	conf := safe(opts...)

	var console io.Writer = os.Stdout
	if conf.PrettyFormat {
		console = zerolog.NewConsoleWriter()
	}

	out := console
	if file := fileWriter(conf); file != nil {
		out = zerolog.MultiLevelWriter(console, file)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if conf.Debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Logger = log.Logger.With().Caller().Stack().Logger()
}

func fileWriter(conf *Config) io.Writer {
	name := strings.TrimSpace(conf.File)
	if name == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   name,
		MaxSize:    positive(conf.MaxSizeMB, 10),
		MaxBackups: positive(conf.MaxBackups, 5),
		MaxAge:     positive(conf.MaxAgeDays, 7),
		Compress:   conf.CompressFiles,
	}
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
