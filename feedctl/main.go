package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/docopt/docopt-go"

	"golang.org/x/term"

	"github.com/jpegapp/feed/feed"
)

const FeedCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Feed control.

The default urls are:
    api_url: https://api.jpegapp.lol

Usage:
    feedctl login [--api_url=<api_url>]
        --email=<email>
        [--password=<password>]
    feedctl register [--api_url=<api_url>]
        --username=<username>
        --email=<email>
        [--password=<password>]
    feedctl logout [--api_url=<api_url>]
    feedctl feed [--api_url=<api_url>]
    feedctl posts [--api_url=<api_url>] --user=<user_id>
    feedctl show [--api_url=<api_url>] <post_id>
    feedctl post [--api_url=<api_url>] [--title=<title>] <body>
    feedctl like [--api_url=<api_url>] <post_id>
    feedctl unlike [--api_url=<api_url>] <post_id>
    feedctl likes [--api_url=<api_url>]
    feedctl user [--api_url=<api_url>] <user_id>

Options:
    -h --help                Show this screen.
    --version                Show version.
    --api_url=<api_url>
    --email=<email>
    --password=<password>    Prompted when not given.
    --username=<username>
    --user=<user_id>
    --title=<title>`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FeedCtlVersion)
	if err != nil {
		panic(err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiUrl, _ := opts.String("--api_url")
	if apiUrl == "" {
		apiUrl = "https://api.jpegapp.lol"
	}

	client := feed.NewClientWithDefaults(cancelCtx, apiUrl)
	defer client.Close()

	if login_, _ := opts.Bool("login"); login_ {
		login(client, opts)
	} else if register_, _ := opts.Bool("register"); register_ {
		register(client, opts)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		logout(client)
	} else if feed_, _ := opts.Bool("feed"); feed_ {
		showFeed(client)
	} else if posts_, _ := opts.Bool("posts"); posts_ {
		showUserPosts(client, opts)
	} else if show_, _ := opts.Bool("show"); show_ {
		showPost(client, opts)
	} else if post_, _ := opts.Bool("post"); post_ {
		createPost(client, opts)
	} else if like_, _ := opts.Bool("like"); like_ {
		toggleLike(client, opts, false)
	} else if unlike_, _ := opts.Bool("unlike"); unlike_ {
		toggleLike(client, opts, true)
	} else if likes_, _ := opts.Bool("likes"); likes_ {
		showLikes(client)
	} else if user_, _ := opts.Bool("user"); user_ {
		showUser(client, opts)
	}
}

func readPassword(opts docopt.Opts) string {
	if password, err := opts.String("--password"); err == nil && password != "" {
		return password
	}
	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		Err.Fatalf("Could not read password (%s).", err)
	}
	return string(passwordBytes)
}

func login(client *feed.Client, opts docopt.Opts) {
	email, _ := opts.String("--email")
	password := readPassword(opts)

	principal, err := client.Session().Login(email, password)
	if err != nil {
		Err.Fatalf("Login failed (%s).", err)
	}
	Out.Printf("Logged in as %s (%s).", principal.Name, principal.Handle)
}

func register(client *feed.Client, opts docopt.Opts) {
	username, _ := opts.String("--username")
	email, _ := opts.String("--email")
	password := readPassword(opts)

	result, err := client.Api().AuthRegisterSync(&feed.AuthRegisterArgs{
		UserName: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		Err.Fatalf("Register failed (%s).", err)
	}
	if result.Error != nil {
		Err.Fatalf("Register failed (%s).", result.Error.Message)
	}
	Out.Printf("Registered %s.", username)

	principal, err := client.Session().Login(email, password)
	if err != nil {
		Err.Fatalf("Login after register failed (%s).", err)
	}
	Out.Printf("Logged in as %s (%s).", principal.Name, principal.Handle)
}

func logout(client *feed.Client) {
	client.Session().Logout()
	Out.Printf("Logged out.")
}

func resume(client *feed.Client) {
	if !client.Session().Resume() {
		Err.Fatalf("Not logged in. Run `feedctl login` first.")
	}
}

func printPosts(client *feed.Client, posts []*feed.Post) {
	for _, post := range posts {
		liked := " "
		if client.Likes().Has(post.Id) {
			liked = "*"
		}
		title := ""
		if post.Title != "" {
			title = fmt.Sprintf("%s: ", post.Title)
		}
		Out.Printf(
			"%s [%s] %s %s%s (likes=%d replies=%d id=%s)",
			post.CreatedAt.Format("2006-01-02 15:04"),
			post.Author.Handle,
			liked,
			title,
			post.Body,
			post.LikeCount,
			post.ReplyCount,
			post.Id,
		)
	}
}

func showFeed(client *feed.Client) {
	client.Session().Resume()
	if err := client.Posts().FetchGlobalFeed(); err != nil {
		Err.Fatalf("Could not fetch feed (%s).", err)
	}
	printPosts(client, client.Posts().AllSortedByRecency())
}

func showUserPosts(client *feed.Client, opts docopt.Opts) {
	client.Session().Resume()
	userId, _ := opts.String("--user")
	if err := client.Posts().FetchPostsByAuthor(userId); err != nil {
		Err.Fatalf("Could not fetch posts (%s).", err)
	}
	printPosts(client, client.Posts().ByAuthorSortedByRecency(userId))
}

func showPost(client *feed.Client, opts docopt.Opts) {
	client.Session().Resume()
	postId, _ := opts.String("<post_id>")

	item, err := client.Api().GetPostSync(postId)
	if err != nil {
		Err.Fatalf("Could not fetch post (%s).", err)
	}
	printPosts(client, []*feed.Post{item.ToPost()})

	author, err := client.Api().GetUserSync(item.UserId)
	if err != nil {
		Err.Fatalf("Could not fetch author (%s).", err)
	}
	Out.Printf("By %s (%s)", author.UserName, feed.HandleForName(author.UserName))
	if author.Bio != "" {
		Out.Printf("%s", author.Bio)
	}
}

func createPost(client *feed.Client, opts docopt.Opts) {
	resume(client)
	title, _ := opts.String("--title")
	body, _ := opts.String("<body>")

	done := make(chan error)
	pendingId, err := client.Coordinator().CreatePost(title, body, func(err error) {
		done <- err
	})
	if err != nil {
		Err.Fatalf("Could not post (%s).", err)
	}
	Out.Printf("Posted (pending %s).", pendingId)
	if err := <-done; err != nil {
		Err.Fatalf("Post rejected and removed (%s).", err)
	}
	Out.Printf("Confirmed.")
}

func toggleLike(client *feed.Client, opts docopt.Opts, wasLiked bool) {
	resume(client)
	postId, _ := opts.String("<post_id>")
	if feed.IsPendingPostId(postId) {
		Out.Printf("Post %s is not confirmed yet.", postId)
		return
	}

	if err := client.Likes().Hydrate(); err != nil {
		Err.Fatalf("Could not fetch likes (%s).", err)
	}
	if client.Likes().Has(postId) != wasLiked {
		if wasLiked {
			Out.Printf("Not liked.")
		} else {
			Out.Printf("Already liked.")
		}
		return
	}

	done := make(chan error)
	err := client.Coordinator().ToggleLike(postId, wasLiked, func(err error) {
		done <- err
	})
	if err != nil {
		Err.Fatalf("Could not toggle like (%s).", err)
	}
	if err := <-done; err != nil {
		Err.Fatalf("Toggle rolled back (%s).", err)
	}
	if wasLiked {
		Out.Printf("Unliked %s.", postId)
	} else {
		Out.Printf("Liked %s.", postId)
	}
}

func showLikes(client *feed.Client) {
	resume(client)
	if err := client.Likes().Hydrate(); err != nil {
		Err.Fatalf("Could not fetch likes (%s).", err)
	}
	for _, postId := range client.Likes().Ids() {
		Out.Printf("%s", postId)
	}
}

func showUser(client *feed.Client, opts docopt.Opts) {
	client.Session().Resume()
	userId, _ := opts.String("<user_id>")

	result, err := client.Api().GetUserSync(userId)
	if err != nil {
		Err.Fatalf("Could not fetch user (%s).", err)
	}
	Out.Printf("%s (%s)", result.UserName, feed.HandleForName(result.UserName))
	if result.Bio != "" {
		Out.Printf("%s", result.Bio)
	}
	if !result.CreatedAt.IsZero() {
		Out.Printf("Joined %s", result.CreatedAt.Format("January 2006"))
	}
	Out.Printf("%d following, %d followers", result.FollowingCount, result.FollowerCount)
}
