package server

import "time"

const (
	writeWait       = 10 * time.Second
	defaultCooldown = 60 * time.Second
)
