// Package handler provides type-safe HTTP request handling for the FHIR
// gateway's JSON API surface.
//
// The package centers around generic handler functions that bind HTTP
// requests to Go structs and return typed responses. This eliminates manual
// request parsing and response encoding while providing compile-time
// guarantees:
//
//	type CreateUserRequest struct {
//		Email    string `json:"email" validate:"required,email"`
//		Password string `json:"password" validate:"required,min=8"`
//	}
//
//	func createUser(ctx handler.Context, req CreateUserRequest) handler.Response {
//		user, err := userService.Create(req)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(user)
//	}
//
//	http.HandleFunc("/users", handler.Wrap(createUser))
//
// # Architecture
//
// 1. HandlerFunc - Generic function type that accepts typed requests and returns responses
// 2. Response Interface - Common interface for all response types
// 3. Context Interface - Enhanced context providing access to the request and response writer
// 4. Decorators - Middleware-like functions for cross-cutting concerns
// 5. Error Handlers - Customizable error response formatting
//
// # Response Types
//
//	handler.JSON(data)                     // 200 OK with data
//	handler.JSON(data, WithJSONStatus(201)) // Custom status
//	handler.JSONError(err)                 // Error response
//	handler.Empty()                        // 204 No Content
//	handler.EmptyWithStatus(http.StatusCreated)
//
// # Error Handling
//
//	handler.ErrNotFound         // 404
//	handler.ErrUnauthorized     // 401
//
//	err := handler.NewValidationError()
//	err.Add("email", "Email is required")
//	return handler.JSONError(err) // 422 with field errors
//
// # Context
//
// The Context interface extends standard context.Context with HTTP-specific
// accessors:
//
//	ctx.Request()         // Access HTTP request
//	ctx.ResponseWriter()  // Access response writer
//
// # Usage
//
//	http.HandleFunc("/users", handler.Wrap(createUser,
//		handler.WithBinders(
//			binder.Path(chi.URLParam),
//			binder.JSON(),
//		),
//		handler.WithErrorHandler(customErrorHandler),
//	))
package handler
