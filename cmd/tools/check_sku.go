package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lychee-technology/tradeschema"
)

// errRejected reports that the input was checked and found invalid.
var errRejected = errors.New("input rejected")

func runCheckSKU(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("check-sku", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: tradeschema-tools check-sku [options]")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Reads one identity per line from stdin when -sku is not given.")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	sku := flags.String("sku", "", "identity string to check")
	quiet := flags.Bool("q", false, "only print invalid identities")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	var inputs []string
	if *sku != "" {
		inputs = []string{*sku}
	} else {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if line == "" {
				continue
			}
			inputs = append(inputs, line)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	invalid := 0
	for _, input := range inputs {
		if _, err := tradeschema.ParseSKU(input); err != nil {
			invalid++
			fmt.Fprintf(stdout, "INVALID %s\t%v\n", input, err)
			continue
		}
		if !*quiet {
			fmt.Fprintf(stdout, "OK      %s\n", input)
		}
	}

	if invalid > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d identities are invalid\n", invalid, len(inputs))
		return errRejected
	}
	return nil
}
