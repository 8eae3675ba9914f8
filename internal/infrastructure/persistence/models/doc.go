// Package models contains the GORM persistence models and their conversions
// to and from domain entities.
package models
