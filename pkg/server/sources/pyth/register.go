package pyth

import (
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
)

func init() {
	sources.Register(sources.SourceTypePyth, NewReader)
}
