package domain

import "time"

type PopularityTally struct {
	ChoiceID  int64     `json:"choiceId"`
	Count     int64     `json:"count"`
	UpdatedAt time.Time `json:"-"`
}
