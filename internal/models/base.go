package models

import "github.com/google/uuid"

// ensureID проставляет UUID на стороне приложения, чтобы модели работали и без gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
