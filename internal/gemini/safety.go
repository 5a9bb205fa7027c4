package gemini

// HarmCategory names a Gemini content-safety category. Values match the API.
type HarmCategory string

const (
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// BlockThreshold is the probability at which the API withholds content.
type BlockThreshold string

const BlockNone BlockThreshold = "BLOCK_NONE"

type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// DefaultSafetySettings turns off category blocking for the four standard
// harm categories. Moderation, if any, happens upstream of the bot.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHateSpeech, Threshold: BlockNone},
		{Category: HarmCategoryHarassment, Threshold: BlockNone},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockNone},
		{Category: HarmCategoryDangerousContent, Threshold: BlockNone},
	}
}
