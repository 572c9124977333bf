package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Employee is a member of the household staff roster.
type Employee struct {
	ID            string `gorm:"primaryKey;size:36"`
	Name          string `gorm:"index"`
	Role          string
	Phone         string
	Address       string
	AdmissionDate string `gorm:"size:10"`
	PhotoURL      string
	BankDetails   BankDetails `gorm:"embedded;embeddedPrefix:bank_"`
	Documents     Documents   `gorm:"embedded;embeddedPrefix:doc_"`
	Active        bool
	TelegramID    *int64 `gorm:"uniqueIndex"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BankDetails is where the employee's salary is paid.
type BankDetails struct {
	Bank    string `json:"bank"`
	Agency  string `json:"agency"`
	Account string `json:"account"`
	Pix     string `json:"pix,omitempty"`
}

// Documents holds the employee's identity numbers.
type Documents struct {
	CPF string `json:"cpf"`
	RG  string `json:"rg"`
}

// BeforeCreate assigns a fresh id to new employees.
func (e *Employee) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
