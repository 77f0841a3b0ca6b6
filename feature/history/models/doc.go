// Package models holds the GORM models of the sync history.
package models
