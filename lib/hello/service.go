package hello

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyID is returned for an empty user id
	ErrEmptyID = errors.New("user id must not be empty")
	// ErrNegativeID is returned for a negative numeric user id
	ErrNegativeID = errors.New("user id must not be negative")
	// ErrInvalidTimes is returned if a greeting is requested less than once
	ErrInvalidTimes = errors.New("times must be positive")
)

// maxGreetings caps the repetitions of Greet
const maxGreetings = 100

type service struct {
	greeting string
}

// NewService creates the local implementation of HelloService
func NewService() HelloService {
	return &service{greeting: "hello"}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see hello.HelloService)
// --------------------------------------------------------------------------

func (s *service) Hello(id string) (*User, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	return &User{ID: id, Name: "user-" + id}, nil
}

func (s *service) HelloByNumber(id int) (*User, error) {
	if id < 0 {
		return nil, ErrNegativeID
	}
	u, err := s.Hello(strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	u.Number = id
	return u, nil
}

func (s *service) Greet(ctx context.Context, name string, times int) (string, error) {
	if times <= 0 || times > maxGreetings {
		return "", fmt.Errorf("%w: got %d, max %d", ErrInvalidTimes, times, maxGreetings)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	greetings := make([]string, times)
	for i := range greetings {
		greetings[i] = s.greeting + " " + name
	}
	return strings.Join(greetings, ", "), nil
}

func (s *service) Fail(reason string) error {
	return errors.New(reason)
}
