package account

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"learngen/gen"
	"learngen/sink"
)

type User struct {
	ID            int64     `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	Email         string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Username      string    `gorm:"column:username;size:100;uniqueIndex;not null" json:"username"`
	FullName      string    `gorm:"column:full_name;size:200" json:"full_name"`
	PasswordHash  string    `gorm:"column:password_hash;size:255" json:"-"`
	SignupDate    time.Time `gorm:"column:signup_date;not null;index" json:"signup_date"`
	Country       string    `gorm:"column:country;size:2" json:"country"`
	IsActive      bool      `gorm:"column:is_active;default:true" json:"is_active"`
	EmailVerified bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
}

func (User) TableName() string {
	return "users"
}

var UserTable = sink.Table{
	Name: "users",
	Columns: []string{
		"email", "username", "full_name", "password_hash", "signup_date", "country", "is_active", "email_verified",
	},
	IDColumn: "user_id",
}

func (u User) Values() []any {
	return []any{u.Email, u.Username, u.FullName, u.PasswordHash, u.SignupDate, u.Country, u.IsActive, u.EmailVerified}
}

var Countries = gen.NewWeights(map[string]float64{
	"TW": 0.35, "SG": 0.20, "HK": 0.15, "MY": 0.12, "VN": 0.10, "US": 0.05, "JP": 0.03,
})

const (
	activeRate   = 0.8
	verifiedRate = 0.7
	// Signups follow an accelerating-adoption curve over the window.
	signupAlpha, signupBeta = 2, 5
)

// UserGen emits users numbered from 1. Email and username embed the
// number, so they stay unique within a run.
type UserGen struct {
	s       *gen.Sampler
	clock   gen.Clock
	count   int
	done    int
	pending []time.Time
}

func NewUserGen(s *gen.Sampler, clock gen.Clock, count int) *UserGen {
	return &UserGen{s: s, clock: clock, count: count}
}

func (g *UserGen) Next(n int) []User {
	n = min(n, g.count-g.done)
	out := make([]User, 0, n)
	faker := g.s.Faker()
	for i := 0; i < n; i++ {
		seq := g.done + i + 1
		u := User{
			Email:         fmt.Sprintf("user%d@example.com", seq),
			Username:      fmt.Sprintf("user%d", seq),
			FullName:      faker.Name(),
			PasswordHash:  credentialHash(faker.Password(true, true, true, false, false, 16)),
			SignupDate:    g.clock.Anchor(g.s, signupAlpha, signupBeta),
			Country:       gen.Weighted(g.s, Countries),
			IsActive:      g.s.Chance(activeRate),
			EmailVerified: g.s.Chance(verifiedRate),
		}
		out = append(out, u)
		g.pending = append(g.pending, u.SignupDate)
	}
	g.done += n
	return out
}

// Refs pairs the store-assigned IDs with the signup dates of the users
// emitted so far.
func (g *UserGen) Refs(ids []int64) ([]gen.UserRef, error) {
	if err := gen.PairIDs("users", ids, len(g.pending)); err != nil {
		return nil, err
	}
	refs := make([]gen.UserRef, len(ids))
	for i, signup := range g.pending {
		refs[i] = gen.UserRef{ID: ids[i], SignupDate: signup}
	}
	g.pending = nil
	return refs, nil
}

func credentialHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
