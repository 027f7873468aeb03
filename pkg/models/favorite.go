package models

import "time"

type Favorite struct {
	UserID    string    `json:"user_id"`
	AppID     int64     `json:"appid"`
	CreatedAt time.Time `json:"created_at"`
}
