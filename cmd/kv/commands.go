package kv

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/decode"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var readOnly = map[string]string{"readonly": "true"}

var (
	getCmd = &cobra.Command{
		Use:         "get [key]",
		Short:       "Prints the value of a key",
		Args:        cobra.ExactArgs(1),
		Annotations: readOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := kvStore.Range()
			if err != nil {
				return err
			}
			out, err := formatValue(rng, args[0], viper.GetString("type"))
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key and commits the store",
		Long: util.WrapString(`Sets the value for a key and commits the store.
The value is encoded according to --type: string (NUL terminated), u32
(comma separated integers), pairs (comma separated ADDR=VALUE) or hex.`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseValue(args[1], viper.GetString("type"))
			if err != nil {
				return err
			}
			if err := kvStore.Set(args[0], value); err != nil {
				return err
			}
			if err := kvStore.Commit(); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes every entry of a key and commits the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(args[0]); err != nil {
				return err
			}
			if err := kvStore.Commit(); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:         "has [key]",
		Short:       "Checks if a key exists",
		Args:        cobra.ExactArgs(1),
		Annotations: readOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := kvStore.Has(args[0])
			if err != nil {
				return err
			}
			if found {
				fmt.Println("key exists")
			} else {
				fmt.Println("key does not exist")
			}
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:         "list",
		Short:       "Lists every entry in store order, duplicates included",
		Args:        cobra.NoArgs,
		Annotations: readOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := kvStore.Range()
			if err != nil {
				return err
			}
			for it := rng.Begin(); it != rng.End(); it = rng.Next(it) {
				e := rng.Deref(it)
				fmt.Printf("%-24s %8s  %s\n", e.KeyString(), humanize.IBytes(uint64(len(e.Value))), preview(e.Value))
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:         "info",
		Short:       "Prints information about the store and the device",
		Args:        cobra.NoArgs,
		Annotations: readOnly,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := kvStore.GetInfo()
			if err != nil {
				return err
			}
			s, err := util.GetSerializer()
			if err != nil {
				return err
			}
			b, err := s.Serialize(info)
			if err != nil {
				return err
			}
			fmt.Print(string(b))
			return nil
		},
	}
)

func init() {
	key := "type"
	getCmd.Flags().String(key, "string", util.WrapString("How to decode the value (string, u32, pairs, raw)"))
	setCmd.Flags().String(key, "string", util.WrapString("How to encode the value (string, u32, pairs, hex)"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatValue(rng nvram.Range, key, typ string) (string, error) {
	switch typ {
	case "string":
		return decode.String(rng, key)
	case "u32":
		values, err := decode.U32Array(rng, key)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("0x%08x", v)
		}
		return strings.Join(parts, ","), nil
	case "pairs":
		cfg, err := decode.ConfigPairs(rng, key)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(cfg))
		for i, p := range cfg {
			parts[i] = fmt.Sprintf("0x%08x=0x%08x", p.Addr, p.Value)
		}
		return strings.Join(parts, "\n"), nil
	case "raw":
		e, ok := rng.Find(key)
		if !ok {
			return "", nvram.NewError(nvram.RetCNotFound, key, "")
		}
		return hex.EncodeToString(e.Value), nil
	default:
		return "", fmt.Errorf("unknown type %q", typ)
	}
}

func parseValue(value, typ string) ([]byte, error) {
	switch typ {
	case "string":
		return decode.EncodeString(value), nil
	case "u32":
		var values []uint32
		for _, part := range strings.Split(value, ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid integer %q: %w", part, err)
			}
			values = append(values, uint32(v))
		}
		return decode.EncodeU32Array(values), nil
	case "pairs":
		var cfg []decode.ConfigPair
		for _, part := range strings.Split(value, ",") {
			addr, val, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				return nil, fmt.Errorf("invalid pair %q (expected ADDR=VALUE)", part)
			}
			a, err := strconv.ParseUint(addr, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid address %q: %w", addr, err)
			}
			v, err := strconv.ParseUint(val, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", val, err)
			}
			cfg = append(cfg, decode.ConfigPair{Addr: uint32(a), Value: uint32(v)})
		}
		return decode.EncodeConfigPairs(cfg), nil
	case "hex":
		return util.ParseHex(value)
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}
}

// preview renders printable terminated strings as text and everything else
// as a shortened hex dump.
func preview(v []byte) string {
	if n := len(v); n > 0 && v[n-1] == 0 && printable(v[:n-1]) {
		return strconv.Quote(string(v[:n-1]))
	}
	const maxBytes = 16
	if len(v) > maxBytes {
		return hex.EncodeToString(v[:maxBytes]) + "..."
	}
	return hex.EncodeToString(v)
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
