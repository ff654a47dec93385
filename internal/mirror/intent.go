package mirror

type OpType uint8

const (
	OpMkDir OpType = iota
	OpUpload
	OpDelete
)

var opTypeNames = []string{
	"MkDir",
	"Upload",
	"Delete",
}

func (op OpType) String() string {
	return opTypeNames[op]
}

// Intent is one pending remote operation derived from a snapshot diff.
// For MkDir and Upload, Entry is the new snapshot's entry; for Delete it is
// the old snapshot's entry (needed to know whether the path was a folder).
type Intent struct {
	Op    OpType
	Path  string
	Entry *Entry
}
