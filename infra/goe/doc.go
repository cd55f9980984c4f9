// Package goe controls go-e chargers through their HTTP API v2. Status reads
// the "car" key and commands set "frc" (force state).
package goe
