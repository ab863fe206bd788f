package domain

import "time"

// Profile is the student profile. A copy is frozen onto every scholarship application.
type Profile struct {
	Name       string `json:"name" dynamodbav:"name" validate:"required"`
	Gender     string `json:"gender" dynamodbav:"gender" validate:"required"`
	College    string `json:"college" dynamodbav:"college" validate:"required"`
	Program    string `json:"program" dynamodbav:"program" validate:"required"`
	University string `json:"university" dynamodbav:"university" validate:"required"`
	StudentID  string `json:"student_id" dynamodbav:"student_id" validate:"required"`
	YearLevel  string `json:"year_level" dynamodbav:"year_level" validate:"required"`
}

// FillBlanks copies fields from other into p wherever p is empty.
func (p Profile) FillBlanks(other Profile) Profile {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Profile{
		Name:       pick(p.Name, other.Name),
		Gender:     pick(p.Gender, other.Gender),
		College:    pick(p.College, other.College),
		Program:    pick(p.Program, other.Program),
		University: pick(p.University, other.University),
		StudentID:  pick(p.StudentID, other.StudentID),
		YearLevel:  pick(p.YearLevel, other.YearLevel),
	}
}

// Account is a scholar or CSO login. Email is the primary key.
type Account struct {
	Email        string `json:"email" dynamodbav:"email"`
	Role         string `json:"role" dynamodbav:"role"`
	PasswordHash string `json:"-" dynamodbav:"password_hash"`
	Profile
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

type UpdateProfileRequest struct {
	Name       *string `json:"name"`
	Gender     *string `json:"gender"`
	College    *string `json:"college"`
	Program    *string `json:"program"`
	University *string `json:"university"`
	StudentID  *string `json:"student_id"`
	YearLevel  *string `json:"year_level"`
}
