/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// WindowRecord is the persisted form of a maintenance window. The
// Document column holds the serialized record exchanged with the API;
// StartsAt/EndsAt are denormalized for range queries.
type WindowRecord struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	StartsAt  time.Time `gorm:"index"`
	EndsAt    time.Time `gorm:"index"`
	Document  []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
