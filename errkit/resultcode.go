package errkit

// ResultCode is a wire-level server result code (spec §6).
type ResultCode int

const (
	Ok                   ResultCode = 0
	ServerError          ResultCode = 1
	KeyNotFound          ResultCode = 2
	GenerationError      ResultCode = 3
	ParameterError       ResultCode = 4
	KeyExists            ResultCode = 5
	BinExists            ResultCode = 6
	ClusterKeyMismatch   ResultCode = 7
	ServerTimeout        ResultCode = 9
	PartitionUnavailable ResultCode = 11
	RecordTooBig         ResultCode = 13
	KeyBusy              ResultCode = 14
	UnsupportedFeature   ResultCode = 16
	BinNotFound          ResultCode = 17
	InvalidNamespace     ResultCode = 20
	FailForbidden        ResultCode = 22
	QueryEnd             ResultCode = 50
	SecurityNotEnabled   ResultCode = 52
)

// auth failure range 60..65, batch failure range 150..152, index failure
// range 200..206 are carried as their raw integer value; they have no
// individual names in spec §6 beyond the range.

var resultCodeNames = map[ResultCode]string{
	Ok:                   "ok",
	ServerError:          "server_error",
	KeyNotFound:          "key_not_found",
	GenerationError:      "generation_error",
	ParameterError:       "parameter_error",
	KeyExists:            "key_exists",
	BinExists:            "bin_exists",
	ClusterKeyMismatch:   "cluster_key_mismatch",
	ServerTimeout:        "server_timeout",
	PartitionUnavailable: "partition_unavailable",
	RecordTooBig:         "record_too_big",
	KeyBusy:              "key_busy",
	UnsupportedFeature:   "unsupported_feature",
	BinNotFound:          "bin_not_found",
	InvalidNamespace:     "invalid_namespace",
	FailForbidden:        "fail_forbidden",
	QueryEnd:             "query_end",
	SecurityNotEnabled:   "security_not_enabled",
}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	switch {
	case c >= 60 && c <= 65:
		return "auth_failure"
	case c >= 150 && c <= 152:
		return "batch_failure"
	case c >= 200 && c <= 206:
		return "index_failure"
	default:
		return "unknown_result_code"
	}
}

// IsOk reports whether the code is Ok. It does not accept
// SecurityNotEnabled; AuthOk is the check that treats that code as a
// successful login as well.
func (c ResultCode) IsOk() bool { return c == Ok }

// AuthOk reports whether the code successfully completes a login handshake.
func (c ResultCode) AuthOk() bool { return c == Ok || c == SecurityNotEnabled }
