// Package amazon carries Login with Amazon and event gateway defaults.
package amazon
