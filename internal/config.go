// Package internal holds process-level plumbing: environment configuration
// and logger construction.
package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	BufferSize      int    `env:"BUFFER_SIZE,required=true"`
	LimitMessages   *int   `env:"LIMIT_MESSAGES"`
	SearchPageSize  int    `env:"SEARCH_PAGE_SIZE,required=true"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`

	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,required=true"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT,required=true"`
	CancelGracePeriod time.Duration `env:"CANCEL_GRACE_PERIOD,required=true"`
	TitleTimeout      time.Duration `env:"TITLE_TIMEOUT,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required=true"`
	OpenAIAPIHost string `env:"OPENAI_API_HOST"`
	OpenAIModel   string `env:"OPENAI_MODEL,required=true"`
	TitleModel    string `env:"TITLE_MODEL"`
	SystemPrompt  string `env:"SYSTEM_PROMPT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
