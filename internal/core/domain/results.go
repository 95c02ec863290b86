package domain

type ChoiceScore struct {
	ChoiceID int64 `json:"choice_id"`
	Votes    int64 `json:"votes"`
}

// CategoryStandings lists the choices of one category, most votes first.
type CategoryStandings struct {
	CategoryID int64         `json:"category_id"`
	Choices    []ChoiceScore `json:"choices"`
}
