package util

import (
	"fmt"
	"github.com/ValentinKolb/recstore/lib/codec"
	"github.com/ValentinKolb/recstore/lib/common"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var plog = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read RECSTORE_<FLAG> environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("recstore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper and applies the log level
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return common.InitLoggers(viper.GetString("log-level"), nil)
}

// GetCodec returns the codec configured with the codec flag. An empty name selects the
// codec by the extension of path.
func GetCodec(path string) (codec.ICodec, error) {
	if name := viper.GetString("codec"); name != "" {
		return codec.ByName(name)
	}
	return codec.ByExtension(path), nil
}

// ReadDataset reads a dataset file ("-" reads stdin)
func ReadDataset(path string) (codec.Dataset, error) {
	c, err := GetCodec(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	ds, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s (%s): %w", path, c.Name(), err)
	}
	plog.Debugf("read %d records from %s", len(ds), path)
	return ds, nil
}

// WriteDataset writes a dataset file ("-" or "" writes stdout)
func WriteDataset(path string, ds codec.Dataset) error {
	c, err := GetCodec(path)
	if err != nil {
		return err
	}
	data, err := c.Encode(ds)
	if err != nil {
		return fmt.Errorf("failed to encode dataset (%s): %w", c.Name(), err)
	}
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
