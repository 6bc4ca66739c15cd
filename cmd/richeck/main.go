// richeck - Reserved Instance Checker
// Find running instances no reservation covers. Tell Slack.
package main

func main() {
	Execute()
}
