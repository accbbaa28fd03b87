package hello

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ValentinKolb/restrpc/lib/hello"
	"github.com/spf13/cobra"
)

var (
	userCmd = &cobra.Command{
		Use:   "user [id]",
		Short: "Looks up a user, numeric ids call the numeric overload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				user *hello.User
				err  error
			)
			if n, convErr := strconv.Atoi(args[0]); convErr == nil {
				user, err = helloClient.HelloByNumber(cmd.Context(), n)
			} else {
				user, err = helloClient.Hello(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("id=%s name=%s number=%d\n", user.ID, user.Name, user.Number)
			return nil
		},
	}
	greetCmd = &cobra.Command{
		Use:   "greet [name] [times]",
		Short: "Greets name the given number of times",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			times, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("times must be a number: %w", err)
			}
			greeting, err := helloClient.Greet(cmd.Context(), args[0], times)
			if err != nil {
				return err
			}
			fmt.Println(greeting)
			return nil
		},
	}
	failCmd = &cobra.Command{
		Use:   "fail [reason]",
		Short: "Calls a remote method that always fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := helloClient.Fail(cmd.Context(), args[0])
			fmt.Printf("remote call failed as expected: %v\n", err)
			return nil
		},
	}
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := referer.Heartbeat(context.Background()); err != nil {
				return err
			}
			fmt.Println("server is reachable")
			return nil
		},
	}
)
