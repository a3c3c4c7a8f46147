package bot

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Number of options in a multiple choice question
	ChoiceOptions int
	// Number of window words sampled for each question
	SampleSize int
	// Language used until the chat picks one with /language
	DefaultLanguage string
	// Languages accepted by /language
	Languages []string
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		ChoiceOptions:   4,
		SampleSize:      8,
		DefaultLanguage: "Spanish",
		Languages:       []string{"Spanish", "French", "Arabic", "Japanese", "Mandarin", "Hieroglyphic", "TokiPona"},
	}
}
