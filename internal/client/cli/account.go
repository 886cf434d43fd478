package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vipclub/internal/client/models"
)

var errEmptyInput = errors.New("input required")

func (a *App) credentials() (string, string, error) {
	userName, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return "", "", err
	}
	if userName == "" {
		return "", "", fmt.Errorf("user name: %w", errEmptyInput)
	}

	password, err := GetPassword(a.reader, a.out)
	if err != nil {
		return "", "", err
	}
	return userName, password, nil
}

func (a *App) Register(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}

	if err := a.api.Register(ctx, userName, password); err != nil {
		return err
	}
	printlnFn("User registered, you can login now")
	return nil
}

// Signup registers a user together with their membership card.
func (a *App) Signup(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}

	vip := &models.VIP{}
	fields := []struct {
		prompt   string
		dst      *string
		required bool
	}{
		{"Membership code", &vip.Code, true},
		{"Mobile phone", &vip.Phone, true},
		{"First name", &vip.FirstName, false},
		{"Last name", &vip.LastName, false},
		{"Email", &vip.Email, false},
		{"City", &vip.City, false},
	}
	for _, f := range fields {
		v, err := GetSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		if f.required && v == "" {
			return fmt.Errorf("%s: %w", f.prompt, errEmptyInput)
		}
		*f.dst = v
	}

	vip.SMSOptIn, err = GetYesNo(a.reader, "Receive SMS offers?", a.out)
	if err != nil {
		return err
	}

	id, err := a.api.Signup(ctx, userName, password, vip)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Member #%d registered, you can login now", id))
	return nil
}

func (a *App) Login(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}

	s, err := a.api.Login(ctx, userName, password)
	if err != nil {
		return err
	}

	a.setUser(userName)
	a.log.Debug(ctx, "logged in", "user", userName)
	printlnFn(fmt.Sprintf("Login successful, session valid for %d minutes", s.ExpiresIn/60))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	if !a.isLoggedIn() {
		a.setUser("")
	}
	if err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

func (a *App) Dashboard(ctx context.Context) error {
	d, err := a.api.Dashboard(ctx)
	if err != nil {
		return err
	}

	printlnFn("User:", d.Username)
	if d.VIP == nil {
		return nil
	}
	v := d.VIP
	printlnFn("Card:", v.Code)
	if name := fmt.Sprintf("%s %s", v.FirstName, v.LastName); name != " " {
		printlnFn("Name:", name)
	}
	printlnFn("Points:", v.Points)
	printlnFn(fmt.Sprintf("Discount: %.2f%%", v.Discount))
	if v.ExpiresOn != nil {
		printlnFn("Expires:", *v.ExpiresOn)
	}
	if v.Blocked {
		printlnFn("Card is blocked")
	}
	return nil
}
