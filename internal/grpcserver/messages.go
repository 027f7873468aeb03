package grpcserver

import (
	"releasehub/internal/calendar"
	"releasehub/internal/dates"
	"releasehub/pkg/models"
)

// MonthRequest selects a calendar month. A nil Exclude uses the server's
// default exclusions; an empty one disables them. UserID, when set, flags
// that user's favorites.
type MonthRequest struct {
	Year    int      `json:"year"`
	Month   int      `json:"month"`
	Exclude []string `json:"exclude"`
	UserID  string   `json:"user_id,omitempty"`
}

type DayBucket struct {
	Date   dates.Date       `json:"date"`
	Titles []calendar.Entry `json:"titles"`
}

type MonthResponse struct {
	Year   int              `json:"year"`
	Month  int              `json:"month"`
	Days   []DayBucket      `json:"days"`
	NoDate []calendar.Entry `json:"no_date"`
}

type DayRequest struct {
	MonthRequest
	Day int `json:"day"`
}

type DayResponse struct {
	Date  dates.Date       `json:"date"`
	Items []calendar.Entry `json:"items"`
}

type TitleRequest struct {
	AppID int64 `json:"appid"`
}

type TitleResponse struct {
	Title models.Title `json:"title"`
}

type ParseRequest struct {
	Text string `json:"text"`
}

type ParseResponse struct {
	OK        bool   `json:"ok"`
	Date      string `json:"date,omitempty"`
	Precision string `json:"precision"`
	Strategy  string `json:"strategy,omitempty"`
}
