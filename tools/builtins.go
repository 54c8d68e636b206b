package tools

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	CurrentTimeName = "current_time"
	AskUserName     = "ask_user"
)

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA time zone name such as Europe/Paris. Defaults to UTC."`
}

// CurrentTime is the result of the current_time tool.
type CurrentTime struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Weekday  string `json:"weekday"`
}

type askUserArgs struct {
	Question string `json:"question" jsonschema:"description=The question to put to the user."`
}

// Builtins returns the local tools available to every run. now is the clock
// used by current_time; nil means time.Now.
func Builtins(now func() time.Time) []Definition {
	if now == nil {
		now = time.Now
	}

	currentTime := NewLocal(CurrentTimeName,
		"Get the current date and time, optionally in a specific time zone.",
		func(ctx context.Context, args currentTimeArgs) (any, error) {
			name := args.Timezone
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return nil, fmt.Errorf("unknown time zone %q", name)
			}
			t := now().In(loc)
			return CurrentTime{
				Time:     t.Format(time.RFC3339),
				Timezone: name,
				Weekday:  t.Weekday().String(),
			}, nil
		})

	askUser := NewLocal(AskUserName,
		"Ask the user a clarifying question and wait for the answer.",
		func(ctx context.Context, args askUserArgs) (any, error) {
			return args.Question, nil
		},
		Interactive())

	return []Definition{currentTime, askUser}
}
