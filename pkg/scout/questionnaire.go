package scout

import (
	"fmt"
	"strings"
)

// Answer is a questionnaire response. The zero value means unanswered.
type Answer string

const (
	AnswerNone   Answer = ""
	AnswerYes    Answer = "Yes"
	AnswerNo     Answer = "No"
	AnswerUnsure Answer = "Unsure"
)

// ParseAnswer accepts yes/no/unsure in any case, plus y/n/u.
func ParseAnswer(s string) (Answer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return AnswerYes, nil
	case "no", "n":
		return AnswerNo, nil
	case "unsure", "u", "?":
		return AnswerUnsure, nil
	}
	return AnswerNone, fmt.Errorf("invalid answer %q (use yes, no or unsure)", s)
}

// Question is one follow-up question asked after phoning the restaurant.
type Question struct {
	ID   string
	Text string
}

// Questions is the fixed questionnaire, in display order.
var Questions = []Question{
	{ID: "knows_celiac", Text: "Did they know what celiac disease is?"},
	{ID: "dedicated_fryer", Text: "Do they have a dedicated gluten-free fryer?"},
	{ID: "change_gloves", Text: "Will they change gloves for your order?"},
	{ID: "separate_prep", Text: "Do they have a separate prep area or clean surfaces?"},
	{ID: "confident_answers", Text: "Did the staff seem confident and knowledgeable?"},
	{ID: "gf_menu", Text: "Do they have a gluten-free menu or marked items?"},
	{ID: "willing_to_accommodate", Text: "Were they willing to make modifications?"},
}

// QuestionByID looks up a question.
func QuestionByID(id string) (Question, bool) {
	for _, q := range Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
