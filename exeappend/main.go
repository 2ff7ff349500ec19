package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mozilla-services/exeappend/peappend"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const usage = `Usage: %[1]s [-o output.exe] (-string text | -file payload.bin) input.exe
       %[1]s -list -base N input.exe
`

func main() {
	if err := run(os.Args[0], os.Args[1:], os.Stdout); err != nil {
		logrus.WithError(err).Fatal("exeappend failed")
	}
}

func run(name string, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), usage, name)
		flags.PrintDefaults()
	}

	output := flags.String("o", "", "output file, defaults to overwriting the input")
	text := flags.String("string", "", "payload given as text")
	file := flags.String("file", "", "payload read from a file")
	list := flags.Bool("list", false, "list payloads appended after -base bytes")
	base := flags.Int("base", -1, "length of the image before the first append")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("exactly one input executable is required")
	}
	input := flags.Arg(0)

	img, err := peappend.OpenFile(input)
	if err != nil {
		return err
	}

	if *list {
		return listPayloads(img, *base, stdout)
	}

	given := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { given[f.Name] = true })

	var payload []byte
	switch {
	case given["string"] && given["file"]:
		return errors.New("-string and -file are mutually exclusive")
	case !given["string"] && !given["file"]:
		flags.Usage()
		return errors.New("one of -string or -file is required")
	case given["file"]:
		if payload, err = os.ReadFile(*file); err != nil {
			return errors.Wrap(err, "reading payload")
		}
	default:
		payload = []byte(*text)
	}

	logEntry := logrus.WithFields(logrus.Fields{
		"input":       input,
		"input_len":   img.Len(),
		"payload_len": len(payload),
	})

	if err := img.Append(payload); err != nil {
		return errors.Wrapf(err, "appending to %s", input)
	}

	if err := img.Write(*output); err != nil {
		return err
	}

	checksum, err := img.StoredChecksum()
	if err != nil {
		return err
	}
	cert, err := img.CertificateTable()
	if err != nil {
		return err
	}
	if cert != nil {
		logEntry = logEntry.WithField("cert_len", cert.Length)
	}
	logEntry.WithFields(logrus.Fields{
		"output":     outputName(img, *output),
		"output_len": img.Len(),
		"checksum":   fmt.Sprintf("%#08x", checksum),
	}).Info("Appended payload")

	return nil
}

func outputName(img *peappend.Image, output string) string {
	if output == "" {
		return img.Name()
	}
	return output
}

func listPayloads(img *peappend.Image, base int, stdout io.Writer) error {
	if base < 0 {
		last, err := peappend.LastPayload(img.Bytes())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%q\n", last)
		return nil
	}

	payloads, err := peappend.Payloads(img.Bytes(), base)
	if err != nil {
		return err
	}
	for i, p := range payloads {
		fmt.Fprintf(stdout, "%d: %q\n", i, p)
	}
	return nil
}
