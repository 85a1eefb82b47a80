package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// BytesPerLine is the number of byte literals on each line of the array body
const BytesPerLine = 12

// HeaderOptions names the generated array and the artifact it came from
type HeaderOptions struct {
	Source    string // file name quoted in the leading comment
	ArrayName string // C identifier; the include guard is derived from it
}

func (o HeaderOptions) guard() string {
	return strings.ToUpper(o.ArrayName) + "_H"
}

// WriteHeader renders data as a C header declaring an 8-byte aligned uint8
// array and its length, suitable for compiling into firmware.
func WriteHeader(w io.Writer, data []byte, opts HeaderOptions) error {
	if opts.ArrayName == "" {
		return fmt.Errorf("array name is required")
	}

	bw := bufio.NewWriter(w)
	guard := opts.guard()

	fmt.Fprintf(bw, "// Auto-generated from %s\n", opts.Source)
	fmt.Fprintf(bw, "// Model size: %d bytes\n\n", len(data))
	fmt.Fprintf(bw, "#ifndef %s\n", guard)
	fmt.Fprintf(bw, "#define %s\n\n", guard)
	fmt.Fprint(bw, "#include <stdint.h>\n\n")
	fmt.Fprintf(bw, "const unsigned int %s_len = %d;\n\n", opts.ArrayName, len(data))
	fmt.Fprintf(bw, "alignas(8) const uint8_t %s[] = {\n", opts.ArrayName)

	for i, b := range data {
		if i%BytesPerLine == 0 {
			bw.WriteString("    ")
		}
		fmt.Fprintf(bw, "0x%02x,", b)
		if i%BytesPerLine == BytesPerLine-1 {
			bw.WriteByte('\n')
		} else {
			bw.WriteByte(' ')
		}
	}
	if len(data)%BytesPerLine != 0 {
		bw.WriteByte('\n')
	}

	fmt.Fprint(bw, "};\n\n")
	fmt.Fprintf(bw, "#endif // %s\n", guard)

	return bw.Flush()
}

// UsageHint is the snippet printed after a header is generated
func UsageHint(headerFile string, opts HeaderOptions) string {
	return fmt.Sprintf("// Usage in firmware:\n#include \"%s\"\n// Access model: %s, %s_len\n", headerFile, opts.ArrayName, opts.ArrayName)
}
