package spatial

import "fmt"

// Result is a runtime return code. Negative values are failures.
type Result int32

const (
	Success                                    Result = 0
	TimeoutExpired                             Result = 1
	ErrorValidationFailure                     Result = -1
	ErrorRuntimeFailure                        Result = -2
	ErrorOutOfMemory                           Result = -3
	ErrorFunctionUnsupported                   Result = -7
	ErrorExtensionNotPresent                   Result = -9
	ErrorSizeInsufficient                      Result = -11
	ErrorHandleInvalid                         Result = -12
	ErrorSessionLost                           Result = -17
	ErrorTimeInvalid                           Result = -30
	ErrorFuturePending                         Result = -1000469001
	ErrorFutureInvalid                         Result = -1000469002
	ErrorSpatialCapabilityUnsupported          Result = -1000740001
	ErrorSpatialEntityIDInvalid                Result = -1000740002
	ErrorSpatialBufferIDInvalid                Result = -1000740003
	ErrorSpatialComponentUnsupportedForCap     Result = -1000740004
	ErrorSpatialCapabilityConfigurationInvalid Result = -1000740005
	ErrorSpatialComponentNotEnabled            Result = -1000740006
)

var resultNames = map[Result]string{
	Success:                                    "SUCCESS",
	TimeoutExpired:                             "TIMEOUT_EXPIRED",
	ErrorValidationFailure:                     "ERROR_VALIDATION_FAILURE",
	ErrorRuntimeFailure:                        "ERROR_RUNTIME_FAILURE",
	ErrorOutOfMemory:                           "ERROR_OUT_OF_MEMORY",
	ErrorFunctionUnsupported:                   "ERROR_FUNCTION_UNSUPPORTED",
	ErrorExtensionNotPresent:                   "ERROR_EXTENSION_NOT_PRESENT",
	ErrorSizeInsufficient:                      "ERROR_SIZE_INSUFFICIENT",
	ErrorHandleInvalid:                         "ERROR_HANDLE_INVALID",
	ErrorSessionLost:                           "ERROR_SESSION_LOST",
	ErrorTimeInvalid:                           "ERROR_TIME_INVALID",
	ErrorFuturePending:                         "ERROR_FUTURE_PENDING_EXT",
	ErrorFutureInvalid:                         "ERROR_FUTURE_INVALID_EXT",
	ErrorSpatialCapabilityUnsupported:          "ERROR_SPATIAL_CAPABILITY_UNSUPPORTED_EXT",
	ErrorSpatialEntityIDInvalid:                "ERROR_SPATIAL_ENTITY_ID_INVALID_EXT",
	ErrorSpatialBufferIDInvalid:                "ERROR_SPATIAL_BUFFER_ID_INVALID_EXT",
	ErrorSpatialComponentUnsupportedForCap:     "ERROR_SPATIAL_COMPONENT_UNSUPPORTED_FOR_CAPABILITY_EXT",
	ErrorSpatialCapabilityConfigurationInvalid: "ERROR_SPATIAL_CAPABILITY_CONFIGURATION_INVALID_EXT",
	ErrorSpatialComponentNotEnabled:            "ERROR_SPATIAL_COMPONENT_NOT_ENABLED_EXT",
}

// Succeeded reports whether r is a non-failure code.
func (r Result) Succeeded() bool {
	return r >= 0
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(%d)", int32(r))
}

// Check converts a failure code returned by op into a *BackendError.
func Check(op string, r Result) error {
	if r.Succeeded() {
		return nil
	}
	return &BackendError{Op: op, Code: r}
}
