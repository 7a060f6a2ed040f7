package domain

// FallbackAnswer is returned whenever no grounded answer can be given.
const FallbackAnswer = "Sorry, I do not have information about this currently."

// UnavailableAnswer is shown instead of raw generation faults.
const UnavailableAnswer = "Sorry, I am temporarily unable to answer. Please try again shortly."

type AnswerOutcome string

const (
	OutcomeAnswered         AnswerOutcome = "answered"
	OutcomeNoInformation    AnswerOutcome = "no_information"
	OutcomeGenerationFailed AnswerOutcome = "generation_failed"
)

// Answer is the result of grounded generation. Text is set only for OutcomeAnswered and
// Detail only for OutcomeGenerationFailed.
type Answer struct {
	Outcome AnswerOutcome `json:"outcome"`
	Text    string        `json:"text,omitempty"`
	Detail  string        `json:"detail,omitempty"`
}

func Answered(text string) Answer {
	return Answer{Outcome: OutcomeAnswered, Text: text}
}

func NoInformation() Answer {
	return Answer{Outcome: OutcomeNoInformation}
}

func GenerationFailed(detail string) Answer {
	return Answer{Outcome: OutcomeGenerationFailed, Detail: detail}
}

// Display renders the answer for a conversational surface.
func (a Answer) Display() string {
	switch a.Outcome {
	case OutcomeAnswered:
		return a.Text
	case OutcomeGenerationFailed:
		return UnavailableAnswer
	default:
		return FallbackAnswer
	}
}

// Turn is the outcome of one question/answer exchange in a thread. Contexts holds the
// resolved passages in hit order; hits missing from the corpus have no entry.
type Turn struct {
	ThreadID string         `json:"thread_id"`
	Question string         `json:"question"`
	Mode     RetrievalMode  `json:"mode"`
	Answer   Answer         `json:"answer"`
	Display  string         `json:"display"`
	Hits     []RetrievalHit `json:"hits"`
	Contexts []Passage      `json:"contexts,omitempty"`
	Thread   Thread         `json:"thread"`
}

// AskOptions overrides the retrieval defaults for a single turn. Zero values keep the defaults.
type AskOptions struct {
	Mode RetrievalMode `json:"mode,omitempty"`
	TopK int           `json:"top_k,omitempty"`
}
