package models

import "time"

type User struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	AgencyID  int64 // 0 means the user is not attached to any response agency
	CreatedAt time.Time
}
