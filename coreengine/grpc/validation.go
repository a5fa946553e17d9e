package grpc

import (
	"context"
	"errors"

	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// =============================================================================
// REQUEST FIELD VALIDATION
// =============================================================================

// validateRequired checks if a field is non-empty.
func validateRequired(field, fieldName string) error {
	if field == "" {
		return InvalidArgument(fieldName)
	}
	return nil
}

// stringField reads a string field from a request struct; absent or
// non-string fields read as "".
func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return ""
	}
	return s.StringValue
}

// requiredString reads a string field and fails with InvalidArgument when empty.
func requiredString(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if err := validateRequired(v, name); err != nil {
		return "", err
	}
	return v, nil
}

// =============================================================================
// STATUS CODES
// =============================================================================

// InvalidArgument returns an InvalidArgument error for a missing or malformed field.
func InvalidArgument(fieldName string) error {
	return status.Errorf(codes.InvalidArgument, "%s is required", fieldName)
}

// NotFound returns a NotFound error for a missing resource.
func NotFound(resourceType, id string) error {
	return status.Errorf(codes.NotFound, "%s not found: %s", resourceType, id)
}

// Internal wraps an unexpected failure.
func Internal(operation string, cause error) error {
	return status.Errorf(codes.Internal, "%s failed: %v", operation, cause)
}

// FailedPrecondition returns an error for an operation the current state forbids.
func FailedPrecondition(resource, currentState, attemptedAction string) error {
	return status.Errorf(codes.FailedPrecondition,
		"%s in state %s cannot %s", resource, currentState, attemptedAction)
}

// toStatus maps domain errors onto status codes.
func toStatus(operation, sessionID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrSessionNotFound):
		return NotFound("session", sessionID)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", operation, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", operation, err)
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return Internal(operation, err)
}
