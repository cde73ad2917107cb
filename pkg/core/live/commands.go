package live

import "strings"

// CommandInterpreter inspects incoming transcriptions for persona hand-off
// phrases. Matching is a case-insensitive substring check against two fixed
// triggers; there is no fuzzy matching and no confirmation step.
type CommandInterpreter struct {
	triggers []trigger
}

type trigger struct {
	phrase  string
	persona Persona
}

// NewCommandInterpreter returns the interpreter with the two fixed triggers.
// Nicole is checked before Laura, so an utterance containing both phrases
// resolves to Nicole. That ordering is inherited from the original trigger
// phrasing and is kept as-is.
func NewCommandInterpreter() *CommandInterpreter {
	return &CommandInterpreter{
		triggers: []trigger{
			{phrase: "quiero hablar con nicole", persona: PersonaNicole},
			{phrase: "quiero hablar con laura", persona: PersonaLaura},
		},
	}
}

// Match reports whether text contains a switch phrase and, if so, which
// persona it selects. The first matching trigger wins.
func (ci *CommandInterpreter) Match(text string) (Persona, bool) {
	lowered := strings.ToLower(text)
	for _, t := range ci.triggers {
		if strings.Contains(lowered, t.phrase) {
			return t.persona, true
		}
	}
	return Persona{}, false
}
