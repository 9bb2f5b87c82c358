package cli

import (
	"errors"
	"fmt"

	"github.com/abiosoft/ishell"
)

const sessionKey = "$session"

// Shell provides an ishell backed interactive shell over a Session.
type Shell struct {
	Interactive bool

	Shell   *ishell.Shell
	Session *Session
}

// NewShell creates a shell over session. A non-interactive shell only
// evaluates the commands passed to Run.
func NewShell(session *Session, interactive bool) *Shell {
	s := &Shell{
		Interactive: interactive,
		Shell:       ishell.New(),
		Session:     session,
	}

	s.Shell.Set(sessionKey, session)
	s.Shell.SetPrompt(session.Prompt())

	for _, cmd := range Commands() {
		s.Shell.AddCmd(cmd)
	}

	return s
}

// Run evaluates args as a single command when given, otherwise starts the
// interactive prompt.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}

	if !s.Interactive {
		return errors.New("cli: command expected")
	}

	s.Shell.Println("remregs shell, type 'help' for commands")
	s.Shell.Run()

	return nil
}

// SessionFrom gets the Session from an ishell context.
func SessionFrom(c *ishell.Context) *Session {
	return c.Get(sessionKey).(*Session)
}

// output wraps a session call producing text.
func output(fn func(s *Session, args []string) (string, error)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		out, err := fn(SessionFrom(c), c.Args)
		if err != nil {
			c.Err(err)
			return
		}

		if out != "" {
			c.Println(out)
		}
	}
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}

	return nil
}

// Commands returns the shell commands.
func Commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name:    "links",
			Aliases: []string{"l"},
			Help:    "list links",
			Func: output(func(s *Session, _ []string) (string, error) {
				return s.Links()
			}),
		},
		{
			Name: "use",
			Help: "LINK, select the current link",
			Func: func(c *ishell.Context) {
				if err := needArgs(c.Args, 1, "use LINK"); err != nil {
					c.Err(err)
					return
				}

				s := SessionFrom(c)
				if err := s.Use(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
				c.SetPrompt(s.Prompt())
			},
		},
		{
			Name: "sync",
			Help: "run the handshake",
			Func: output(func(s *Session, _ []string) (string, error) {
				return s.Sync()
			}),
		},
		{
			Name: "state",
			Help: "show the link state",
			Func: output(func(s *Session, _ []string) (string, error) {
				return s.State()
			}),
		},
		{
			Name:    "registers",
			Aliases: []string{"regs"},
			Help:    "list register definitions",
			Func: output(func(s *Session, _ []string) (string, error) {
				return s.Registers()
			}),
		},
		{
			Name:    "get",
			Aliases: []string{"g"},
			Help:    "NAME..., read registers",
			Func: output(func(s *Session, args []string) (string, error) {
				return s.Get(args...)
			}),
		},
		{
			Name:    "set",
			Aliases: []string{"s"},
			Help:    "NAME VALUE, write a register",
			Func: output(func(s *Session, args []string) (string, error) {
				if err := needArgs(args, 2, "set NAME VALUE"); err != nil {
					return "", err
				}

				return s.Set(args[0], args[1])
			}),
		},
		{
			Name: "dump",
			Help: "[-r], read every register, -r bypasses the cache",
			Func: output(func(s *Session, args []string) (string, error) {
				return s.Dump(len(args) > 0 && args[0] == "-r")
			}),
		},
		{
			Name: "peek",
			Help: "WIDTH ADDR, read a register by address",
			Func: output(func(s *Session, args []string) (string, error) {
				if err := needArgs(args, 2, "peek 8|16|32|mb ADDR"); err != nil {
					return "", err
				}

				return s.Peek(args[0], args[1])
			}),
		},
		{
			Name: "poke",
			Help: "WIDTH ADDR VALUE, write a register by address",
			Func: output(func(s *Session, args []string) (string, error) {
				if err := needArgs(args, 3, "poke 8|16|32|mb ADDR VALUE"); err != nil {
					return "", err
				}

				return s.Poke(args[0], args[1], args[2])
			}),
		},
		{
			Name: "stats",
			Help: "show link counters",
			Func: output(func(s *Session, _ []string) (string, error) {
				return s.Stats()
			}),
		},
	}
}
