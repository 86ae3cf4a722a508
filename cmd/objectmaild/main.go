// Command objectmaild runs the ObjectMail HTTP/S3 gateway. Grounded on the
// teacher's cmd/guerrillad layout (root.go + serve.go), generalized from
// an SMTP daemon's flags to this server's.
package main

func main() {
	Execute()
}
